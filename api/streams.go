package api

import (
	"net/http"

	"github.com/xraph/drip"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

type createResponse struct {
	ID uint64 `json:"id"`
}

func (s *Server) createStream(w http.ResponseWriter, r *http.Request) {
	var p drip.CreateParams
	if err := decode(r, &p); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.engine.CreateStream(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{ID: id})
}

func (s *Server) listStreams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := stream.ListOpts{
		Sender:    types.Identity(q.Get("sender")),
		Recipient: types.Identity(q.Get("recipient")),
		Status:    stream.Status(q.Get("status")),
	}
	if opts.Status != "" && !opts.Status.Valid() {
		writeError(w, drip.ValidationError{Field: "status", Message: "unknown status"})
		return
	}
	var err error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}

	streams, err := s.engine.ListStreams(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if streams == nil {
		streams = []*stream.Stream{}
	}
	writeJSON(w, http.StatusOK, streams)
}

func (s *Server) getStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.engine.GetStream(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) claimable(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	at, ok, err := queryUint(r, "at")
	if err != nil {
		writeError(w, err)
		return
	}

	var c stream.Claimable
	if ok {
		c, err = s.engine.CalculateClaimable(r.Context(), id, types.Height(at))
	} else {
		c, err = s.engine.ClaimableNow(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) claimStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.engine.ClaimStream(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) cancelStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.engine.CancelStream(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) pauseStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.PauseStream(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) resumeStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.ResumeStream(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) getAggregate(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r, "identity")
	if err != nil {
		writeError(w, err)
		return
	}
	agg, err := s.engine.GetAggregate(r.Context(), who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{Name: event.Name(r.URL.Query().Get("name"))}
	id, _, err := queryUint(r, "stream_id")
	if err != nil {
		writeError(w, err)
		return
	}
	opts.StreamID = id
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}

	events, err := s.engine.ListEvents(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h, err := s.engine.BlockHeight(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "height": h})
}
