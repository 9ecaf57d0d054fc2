package logging

import (
	"time"

	"github.com/charlie-sans/netprop/internal/shared/id"
	"go.uber.org/zap"
)

// Field keys shared by every component that logs about a render.
const (
	KeyRenderID = "render_id"
	KeyDocument = "document"
	KeyBlock    = "block"
	KeyDuration = "duration"
)

// RenderID tags an entry with the render it belongs to.
func RenderID(v id.RenderID) zap.Field { return zap.String(KeyRenderID, v.String()) }

// Document tags an entry with a document name.
func Document(name string) zap.Field { return zap.String(KeyDocument, name) }

// Block identifies a script block by its position in the document.
func Block(index int) zap.Field { return zap.Int(KeyBlock, index) }

// Duration records how long an operation took.
func Duration(d time.Duration) zap.Field { return zap.Duration(KeyDuration, d) }
