package directory

import (
	"context"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/process"
)

// OptionalIndex is one slot of a BatchedRetrieveResponse: Present is false
// for a key the directory does not know.
type OptionalIndex struct {
	Index   uint64
	Present bool
}

// BatchedRetrieveRequest asks the Directory actor to resolve a batch of
// public keys to dense indices in one round trip, matching spec.md §4.9's
// TxFiller -> directory batched lookup. ReplyTo receives exactly one
// BatchedRetrieveResponse, fired at most once.
type BatchedRetrieveRequest struct {
	ReplyTo *process.Oncebox
	Keys    []cryptoprim.Public
}

func (BatchedRetrieveRequest) Kind() string { return "directory.batched_retrieve_request" }

// BatchedRetrieveResponse carries one OptionalIndex per key of the
// originating request, in the same order.
type BatchedRetrieveResponse struct {
	Indices []OptionalIndex
}

func (BatchedRetrieveResponse) Kind() string { return "directory.batched_retrieve_response" }

// Run is the Directory's actor body, answering BatchedRetrieveRequest
// messages. The Bank also holds this same *Directory and calls Lookup/
// Insert directly for its own synchronous operations; this actor loop
// exists only to serve the filler's message-passing batched lookups.
func (d *Directory) Run(ctx context.Context, mb *process.Mailbox) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := mb.Recv()
		if !ok {
			return nil
		}
		req, ok := m.(BatchedRetrieveRequest)
		if !ok {
			continue
		}
		resp := BatchedRetrieveResponse{Indices: make([]OptionalIndex, len(req.Keys))}
		for i, k := range req.Keys {
			if idx, found := d.Lookup(k); found {
				resp.Indices[i] = OptionalIndex{Index: idx, Present: true}
			}
		}
		if req.ReplyTo != nil {
			req.ReplyTo.Fill(resp)
		}
	}
}
