// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package app

import "context"

// App is one side of a peerdrop connection. Run blocks until the user quits,
// the peer disconnects or ctx is cancelled.
type App interface {
	Run(ctx context.Context) error
}

var (
	_ App = (*HostApp)(nil)
	_ App = (*JoinApp)(nil)
)
