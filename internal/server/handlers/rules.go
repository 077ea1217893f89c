package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/datavet-systems/datavet/internal/rules"
)

// ListRules returns the rule catalog: built-in kinds plus any custom kinds
// registered on this server.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	catalog := rules.Catalog()

	documented := make(map[string]bool, len(catalog))
	for _, doc := range catalog {
		documented[string(doc.Kind)] = true
	}
	for _, kind := range h.registry.Kinds() {
		if !documented[string(kind)] {
			catalog = append(catalog, rules.KindDoc{Kind: kind, Summary: "custom rule"})
		}
	}

	_ = json.NewEncoder(w).Encode(catalog)
}
