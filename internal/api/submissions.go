package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// getSubmission is the masked read-back. Private documents are only exposed as signed URLs.
func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, err := s.deps.Wizard.Drafts.Load(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	docs, err := s.deps.Documents.SignedURLs(ctx, sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submissionResponse{
		Submission: sub.Masked(),
		Documents:  docs,
		Progress:   s.registry.Progress(sub),
		Total:      s.registry.Count(sub),
	})
}

func (s *Server) completeSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Completer.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionResponse{
		Submission: sub.Masked(),
		Progress:   s.registry.Progress(sub),
		Total:      s.registry.Count(sub),
	})
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request) {
	var req assignTaskRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Tasks.Assign(r.Context(), mux.Vars(r)["id"], req.assignment())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
