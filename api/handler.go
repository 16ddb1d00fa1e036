package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qubic/chains-status/domain"
)

type Handler struct {
	sp          StatusProvider
	explorerUrl string
}

type StatusProvider interface {
	Current() *domain.Snapshot
}

type ChainStatusResponse struct {
	Id          string `json:"id"`
	ShortName   string `json:"shortName"`
	Image       string `json:"image,omitempty"`
	LatestBlock int64  `json:"latestBlock"`
	State       string `json:"state"`
}

type StatusResponse struct {
	Generation  uint64                `json:"generation"`
	PublishedAt time.Time             `json:"publishedAt"`
	Chains      []ChainStatusResponse `json:"chains"`
}

type AlertsResponse struct {
	Unsynced    []string `json:"unsynced"`
	Message     string   `json:"message,omitempty"`
	ExplorerUrl string   `json:"explorerUrl,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func NewHandler(sp StatusProvider, explorerUrl string) *Handler {
	return &Handler{sp: sp, explorerUrl: explorerUrl}
}

func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.sp.Current()
	if snapshot == nil {
		http.Error(w, "Chains status not available yet", http.StatusServiceUnavailable)
		return
	}

	chains := make([]ChainStatusResponse, 0, len(snapshot.Chains))
	for _, status := range snapshot.Chains {
		chains = append(chains, ChainStatusResponse{
			Id:          status.ID,
			ShortName:   status.ShortName,
			Image:       status.Image,
			LatestBlock: status.LatestBlock,
			State:       status.State(),
		})
	}
	writeJson(w, StatusResponse{
		Generation:  snapshot.Generation,
		PublishedAt: snapshot.PublishedAt,
		Chains:      chains,
	})
}

// GetAlerts lists the enabled chains whose subgraph is not synced. An optional address query parameter links
// the explorer to the transactions of that address.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sp.Current()
	if snapshot == nil {
		http.Error(w, "Chains status not available yet", http.StatusServiceUnavailable)
		return
	}

	unsynced := snapshot.Chains.Unsynced().ShortNames()
	response := AlertsResponse{Unsynced: unsynced}
	if len(unsynced) > 0 {
		response.Message = alertMessage(unsynced)
		response.ExplorerUrl = h.explorerLink(r.URL.Query().Get("address"))
	}
	writeJson(w, response)
}

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, HealthResponse{
		Status: "UP",
	})
}

func alertMessage(unsynced []string) string {
	plural := ""
	if len(unsynced) > 1 {
		plural = "s"
	}
	return fmt.Sprintf("You may face some delay transfers due to the %s subgraph%s is not synced. "+
		"However, no worry at all - your funds are SAFE.", strings.Join(unsynced, ", "), plural)
}

func (h *Handler) explorerLink(address string) string {
	if h.explorerUrl == "" {
		return ""
	}
	if address == "" {
		return h.explorerUrl
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimSuffix(h.explorerUrl, "/"), url.PathEscape(address))
}

func writeJson(w http.ResponseWriter, response any) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
		return
	}
}
