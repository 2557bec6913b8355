package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/view"
)

// ErrUnknownUploadKind is returned for kinds other than inventory and sales.
var ErrUnknownUploadKind = errors.New("dashboard: unknown upload kind")

// UploadKind selects the CSV import endpoint.
type UploadKind string

const (
	UploadInventory UploadKind = "inventory"
	UploadSales     UploadKind = "sales"
)

// Endpoint returns the backend path for the kind.
func (k UploadKind) Endpoint() (string, error) {
	switch k {
	case UploadInventory:
		return api.PathUploadInventory, nil
	case UploadSales:
		return api.PathUploadSales, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUploadKind, string(k))
}

// ParseUploadKind accepts "inventory" or "sales" in any case.
func ParseUploadKind(name string) (UploadKind, error) {
	kind := UploadKind(strings.ToLower(strings.TrimSpace(name)))
	if _, err := kind.Endpoint(); err != nil {
		return "", err
	}
	return kind, nil
}

// Upload returns a Fetch that posts the CSV at path to the kind's endpoint.
// A successful upload is followed by one inventory refresh from Apply.
func (o *Orchestrator) Upload(kind UploadKind, path string) (Fetch, error) {
	endpoint, err := kind.Endpoint()
	if err != nil {
		return nil, err
	}
	seq := o.issue(ResourceUpload)
	backend := o.backend
	return func(ctx context.Context) Event {
		res := backend.Upload(ctx, endpoint, path)
		return UploadCompleted{Seq: seq, Kind: kind, Endpoint: endpoint, Result: res}
	}, nil
}

// uploadNoReason completes the failure message when the server rejects an
// upload without an error string.
const uploadNoReason = "no reason given"

// Uploads are never fenced: each one is a distinct mutation.
func (o *Orchestrator) applyUpload(e UploadCompleted) []Fetch {
	if o.state.pending[ResourceUpload] > 0 {
		o.state.pending[ResourceUpload]--
	}
	switch {
	case e.Result.OK:
		o.Notify(LevelSuccess, fmt.Sprintf("%s upload successful ✅", e.Endpoint))
		return o.Refresh(view.Inventory)
	case e.Result.Transport:
		o.logger.Printf("dashboard: upload %s transport failure", e.Endpoint)
		o.Notify(LevelError, MsgUploadTransport)
	default:
		reason := e.Result.Error
		if reason == "" {
			reason = uploadNoReason
		}
		o.logger.Printf("dashboard: upload %s rejected: %s", e.Endpoint, reason)
		o.Notify(LevelError, "Upload failed: "+reason)
	}
	return nil
}
