// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package display

import (
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayOrigin is the baseline-left point of the FPS text.
var OverlayOrigin = image.Point{X: 25, Y: 25}

// OverlayColor is the FPS text colour.
var OverlayColor = color.RGBA{G: 255, A: 255}

// DrawFPS writes fps onto frame at OverlayOrigin. Text falling outside
// the frame is clipped.
func DrawFPS(frame *image.RGBA, fps int) {
	drawer := font.Drawer{
		Dst:  frame,
		Src:  image.NewUniform(OverlayColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(frame.Rect.Min.X+OverlayOrigin.X, frame.Rect.Min.Y+OverlayOrigin.Y),
	}
	drawer.DrawString(strconv.Itoa(fps))
}
