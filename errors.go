package refresh

import (
	"errors"
	"fmt"
)

// Error kinds shared across subsystems. Subsystems tag failures with one of
// these and return them up to the renderer driver; only the driver decides
// between retry, fallback, and abort.
var (
	// ErrInitFailure is fatal: device lost at startup or incompatible mode.
	ErrInitFailure = errors.New("initialization failure")

	// ErrMalformedAsset covers bad BSP/MD2/image headers. Non-fatal for
	// non-essential assets (placeholder substituted); fatal for the worldmodel.
	ErrMalformedAsset = errors.New("malformed asset")

	// ErrUnsupportedVersion is a recognized format with the wrong version tag.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrDeviceLost at runtime triggers a swapchain+pipeline rebuild; two
	// consecutive rebuild failures escalate to ErrInitFailure.
	ErrDeviceLost = errors.New("device lost")

	// ErrOutOfMemory: evict the oldest unreferenced image generation and retry
	// once; on a second failure the allocation fails as ErrMalformedAsset for
	// the triggering asset.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrAtlasFull: the scrap allocator had no room for a UI pic; caller falls
	// back to a dedicated image and logs once per name.
	ErrAtlasFull = errors.New("atlas full")
)

// AssetError wraps an error kind with the virtual path that produced it.
type AssetError struct {
	Path string
	Err  error
}

func (e *AssetError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *AssetError) Unwrap() error { return e.Err }

func MalformedAsset(path string, detail string) error {
	if detail == "" {
		return &AssetError{Path: path, Err: ErrMalformedAsset}
	}
	return &AssetError{Path: path, Err: fmt.Errorf("%w: %s", ErrMalformedAsset, detail)}
}
