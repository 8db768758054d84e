// Package ui is the console front end: progress bars for running transfers,
// notifications, the session code prompt and the interactive command loop.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"peerdrop/internal/logging"
	"peerdrop/internal/transfer"
	"peerdrop/pkg/utils"
)

type barKey struct {
	dir  transfer.Direction
	name string
}

// ConsoleUI implements transfer.Notifier on a terminal. Completed inbound
// files are written to the download directory.
type ConsoleUI struct {
	out         io.Writer
	downloadDir string
	logger      *zap.Logger

	mu   sync.Mutex
	bars map[barKey]*progressbar.ProgressBar

	lines     chan string
	linesOnce sync.Once
	in        io.Reader
}

// NewConsoleUI creates a console UI reading commands from in and writing to out
func NewConsoleUI(in io.Reader, out io.Writer, downloadDir string, logger *zap.Logger) *ConsoleUI {
	return &ConsoleUI{
		in:          in,
		out:         out,
		downloadDir: downloadDir,
		logger:      logging.OrNop(logger).Named("ui"),
		bars:        make(map[barKey]*progressbar.ProgressBar),
		lines:       make(chan string),
	}
}

// ShowMessage displays a message to the user
func (c *ConsoleUI) ShowMessage(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, message)
}

// Info implements transfer.Notifier
func (c *ConsoleUI) Info(message string) {
	c.ShowMessage(message)
}

// Warn implements transfer.Notifier
func (c *ConsoleUI) Warn(message string) {
	c.ShowMessage("Warning: " + message)
}

// Progress implements transfer.Notifier
func (c *ConsoleUI) Progress(dir transfer.Direction, fileName string, progress int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bar := c.barLocked(dir, fileName)
	_ = bar.Set64(int64(progress))
}

// Completed implements transfer.Notifier
func (c *ConsoleUI) Completed(dir transfer.Direction, fileName string, blob *transfer.Blob) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finishLocked(dir, fileName, true)
	if dir == transfer.Outbound || blob == nil {
		fmt.Fprintf(c.out, "Sent %s\n", fileName)
		return
	}

	path, err := blob.SaveTo(c.downloadDir)
	if err != nil {
		c.logger.Error("failed to save received file", zap.String("file", fileName), zap.Error(err))
		fmt.Fprintf(c.out, "Received %s (%s) but could not save it: %v\n",
			fileName, utils.FormatFileSize(blob.Size()), err)
		return
	}
	c.logger.Info("saved received file",
		zap.String("file", fileName), zap.String("path", path), zap.String("sha256", blob.Checksum()))
	fmt.Fprintf(c.out, "Received %s (%s, %s) -> %s\n",
		fileName, utils.FormatFileSize(blob.Size()), blob.MimeType, path)
}

// Cancelled implements transfer.Notifier
func (c *ConsoleUI) Cancelled(dir transfer.Direction, fileName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finishLocked(dir, fileName, false)
	if dir == transfer.Outbound {
		fmt.Fprintf(c.out, "Cancelled sending %s\n", fileName)
	} else {
		fmt.Fprintf(c.out, "Peer cancelled %s\n", fileName)
	}
}

func (c *ConsoleUI) barLocked(dir transfer.Direction, fileName string) *progressbar.ProgressBar {
	key := barKey{dir: dir, name: fileName}
	if bar, ok := c.bars[key]; ok {
		return bar
	}

	verb := "Sending"
	if dir == transfer.Inbound {
		verb = "Receiving"
	}
	bar := progressbar.NewOptions64(100,
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", verb, fileName)),
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
	c.bars[key] = bar
	return bar
}

func (c *ConsoleUI) finishLocked(dir transfer.Direction, fileName string, done bool) {
	key := barKey{dir: dir, name: fileName}
	bar, ok := c.bars[key]
	if !ok {
		return
	}
	delete(c.bars, key)

	if done {
		_ = bar.Finish()
	} else {
		_ = bar.Clear()
	}
	fmt.Fprintln(c.out)
}

// Lines yields trimmed input lines until the input ends or ctx is done. A
// single reader goroutine serves both the code prompt and the command loop.
func (c *ConsoleUI) Lines(ctx context.Context) <-chan string {
	c.linesOnce.Do(func() {
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				select {
				case c.lines <- strings.TrimSpace(scanner.Text()):
				case <-ctx.Done():
					return
				}
			}
		}()
	})
	return c.lines
}

// InputCode prompts until the user enters a valid 8-character code
func (c *ConsoleUI) InputCode(ctx context.Context) (string, error) {
	lines := c.Lines(ctx)
	for {
		c.prompt("Enter code from host: ")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case code, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			if utils.IsValidCode(code) {
				return code, nil
			}
			c.ShowMessage("Invalid code. Please enter again.")
		}
	}
}

// ShowCode displays the session code the joining peer must enter
func (c *ConsoleUI) ShowCode(code string) {
	c.ShowMessage(fmt.Sprintf("Share this code with your peer: %s", code))
}

func (c *ConsoleUI) prompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, text)
}
