package main

import (
	"encoding/json"
	"log"
	"net/http"
)

// Stand-in AI provider for local runs: charges one token per four prompt
// characters, which is enough to exercise the budget debit path.
func main() {
	http.HandleFunc("/v1/complete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Feature string `json:"feature"`
			Prompt  string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("Received completion request: feature=%s prompt_len=%d", req.Feature, len(req.Prompt))

		tokens := int64(len(req.Prompt)/4) + 20

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":        "This is a canned completion from the dummy provider.",
			"model":       "dummy-1",
			"tokens_used": tokens,
		})
	})

	log.Println("Dummy AI provider starting on :3001")
	if err := http.ListenAndServe(":3001", nil); err != nil {
		log.Fatal(err)
	}
}
