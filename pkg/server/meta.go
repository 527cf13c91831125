package server

import (
	"os"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
	"github.com/gabriel-vasile/mimetype"
)

// describe stats path for a change notification. Paths that are gone, as
// after REMOVED or RENAMED_FROM, only carry the action and the path.
func describe(action model.Action, path string, detectMIME bool) protocol.ChangePayload {
	p := protocol.ChangePayload{Action: action, Path: path}
	if action == model.Removed || action == model.RenamedFrom {
		return p
	}

	fi, err := os.Stat(path)
	if err != nil {
		return p
	}
	p.Dir = fi.IsDir()
	p.ModTime = fi.ModTime()
	if p.Dir {
		return p
	}
	p.Size = fi.Size()

	if detectMIME {
		if m, err := mimetype.DetectFile(path); err == nil {
			p.MIME = m.String()
		}
	}
	return p
}
