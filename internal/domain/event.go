package domain

import "github.com/couchcryptid/sounding-edit-service/internal/skewt"

// EditEvent is one in-flight drag. Start is the handle position at
// pointer-down; Current follows pointer-move. Both are diagram pixels.
type EditEvent struct {
	Variable Variable    `json:"variable"`
	Index    int         `json:"index"`
	Start    skewt.Point `json:"start"`
	Current  skewt.Point `json:"current"`
}
