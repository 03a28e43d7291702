package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// 응답 포맷
type format int

const (
	formatJSON format = iota
	formatYAML
)

// 포맷 결정: ?format= 우선, 없으면 Accept
func negotiate(r *http.Request) format {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "yaml", "yml":
		return formatYAML
	case "json":
		return formatJSON
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/x-yaml") || strings.Contains(accept, "text/yaml") {
		return formatYAML
	}
	return formatJSON
}

// 직렬화 → Content-Type, 본문
func encode(f format, v any) (string, []byte, error) {
	if f == formatYAML {
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", nil, err
		}
		return "application/x-yaml; charset=utf-8", b, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return "application/json; charset=utf-8", append(b, '\n'), nil
}

// 공통 응답 작성(직렬화 실패면 500)
func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, v any) {
	ct, b, err := encode(negotiate(r), v)
	if err != nil {
		h.log.Error("encode response failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
