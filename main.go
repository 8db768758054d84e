// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// peerdrop sends files between two peers over a WebRTC data channel
package main

import "peerdrop/cmd"

func main() {
	cmd.Execute()
}
