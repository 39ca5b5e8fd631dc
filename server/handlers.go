package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"error_type": errors.ErrorType(err),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.manager.Status()
	overall := "ok"
	for _, h := range status.Plugins {
		if h.Status != plugin.StatusHealthy {
			overall = "degraded"
			break
		}
	}
	if status.Failed > 0 {
		overall = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  overall,
		"plugins": status.Plugins,
		"failed":  status.FailedPlugins,
	})
}

func (s *Server) handlePluginStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handlePluginReload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// A plugin in a failed state has no live instance but can still be
	// reloaded; only names the manager has never seen are a 404.
	if s.manager.State(name) == plugin.StateUndiscovered {
		writeError(w, http.StatusNotFound, errors.NewPluginNotFound("plugin %s", name))
		return
	}
	if !s.manager.Reload(r.Context(), name, s.host) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"reloaded": false,
			"state":    s.manager.State(name),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"state":    s.manager.State(name),
	})
}

func (s *Server) handlePluginTest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := s.manager.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.NewPluginNotFound("plugin %s", name))
		return
	}
	integration, ok := p.(plugin.IntegrationPlugin)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.Newf("plugin %s is not an integration", name))
		return
	}
	if err := integration.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"connected":  false,
			"error":      err.Error(),
			"error_type": errors.ErrorType(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connected": true})
}

func (s *Server) handlePluginSync(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := s.manager.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.NewPluginNotFound("plugin %s", name))
		return
	}
	integration, ok := p.(plugin.IntegrationPlugin)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.Newf("plugin %s is not an integration", name))
		return
	}

	var payload plugin.SyncPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.Mark(errors.Wrap(err, "decode sync payload"), errors.ErrValidation))
		return
	}
	if payload.Type == "" {
		writeError(w, http.StatusBadRequest, errors.Mark(errors.New("sync payload type is required"), errors.ErrValidation))
		return
	}

	result := integration.SyncData(r.Context(), payload)
	if s.store != nil {
		reference, _ := payload.Record["reference"].(string)
		if _, err := s.store.RecordSync(r.Context(), name, payload.Type, reference, result); err != nil {
			s.log.Errorw("record sync failed", "plugin", name, "error", err)
		}
	}

	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, result)
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Mark(errors.Wrap(err, "missing document field"), errors.ErrValidation))
		return
	}
	defer file.Close()

	id, stored, err := s.processor.Store(r.Context(), header.Filename, header.Size, file)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	meta := map[string]interface{}{"filename": header.Filename}
	if content := r.FormValue("content"); content != "" {
		meta["content"] = content
	}

	result := s.processor.Process(r.Context(), id, stored, meta)
	code := http.StatusOK
	if !result.Success {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, result)
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("document store not available"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	docs, err := s.store.Documents(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("document store not available"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Mark(errors.New("invalid document id"), errors.ErrValidation))
		return
	}
	doc, err := s.store.Document(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("sync log not available"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.SyncHistory(r.Context(), r.URL.Query().Get("plugin"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
