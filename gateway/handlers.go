package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/confirm"
	"github.com/nucleon-labs/neoportal/invoke"
	"github.com/nucleon-labs/neoportal/registry"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
)

// errorDedupWindow suppresses repeats of the same failure in the log; one
// flapping node should not flood it with identical lines.
const errorDedupWindow = 30 * time.Second

// Handlers implements the gateway's JSON endpoints over the wallet stack.
type Handlers struct {
	registry *registry.Registry
	invoker  *invoke.Service
	poller   *confirm.Poller
	clients  map[config.NetworkID]*rpc.Client
	dedupe   *walleterr.Deduper
}

// NewHandlers wires the JSON endpoints.
func NewHandlers(reg *registry.Registry, invoker *invoke.Service, poller *confirm.Poller, clients map[config.NetworkID]*rpc.Client) *Handlers {
	return &Handlers{
		registry: reg,
		invoker:  invoker,
		poller:   poller,
		clients:  clients,
		dedupe:   walleterr.NewDeduper(errorDedupWindow),
	}
}

type walletEntry struct {
	Installed *bool  `json:"installed"`
	Account   string `json:"account,omitempty"`
	NetworkID string `json:"networkId,omitempty"`
	Version   string `json:"version,omitempty"`
}

type walletSnapshot struct {
	Wallets            map[string]walletEntry `json:"wallets"`
	ActiveConnectorID  string                 `json:"activeConnectorId,omitempty"`
	EffectiveNetworkID string                 `json:"effectiveNetworkId"`
}

// WalletSnapshot reports every connector's observed state plus the derived
// active connector and effective network.
func (h *Handlers) WalletSnapshot(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.Entries()
	out := walletSnapshot{
		Wallets:            make(map[string]walletEntry, len(entries)),
		ActiveConnectorID:  string(h.registry.ActiveConnectorID()),
		EffectiveNetworkID: string(h.registry.EffectiveNetworkID()),
	}
	for id, entry := range entries {
		out.Wallets[string(id)] = walletEntry{
			Installed: entry.Installed,
			Account:   entry.Data.Account,
			NetworkID: string(entry.Data.NetworkID),
			Version:   entry.Version,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// TokenMetadata reads a NEP-17 token's symbol and decimals.
func (h *Handlers) TokenMetadata(w http.ResponseWriter, r *http.Request) {
	networkID := config.NetworkID(chi.URLParam(r, "network"))
	tokenHash := chi.URLParam(r, "token")

	symbol, err := h.invoker.Symbol(r.Context(), networkID, tokenHash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	decimals, err := h.invoker.Decimals(r.Context(), networkID, tokenHash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scriptHash": tokenHash,
		"symbol":     symbol,
		"decimals":   decimals,
	})
}

// TokenBalance reads an account's NEP-17 balance.
func (h *Handlers) TokenBalance(w http.ResponseWriter, r *http.Request) {
	networkID := config.NetworkID(chi.URLParam(r, "network"))
	tokenHash := chi.URLParam(r, "token")
	account := r.URL.Query().Get("account")
	if account == "" {
		h.writeError(w, walleterr.New(walleterr.InvalidParams, "account query parameter is required"))
		return
	}

	balance, err := h.invoker.Balance(r.Context(), networkID, tokenHash, account)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scriptHash": tokenHash,
		"account":    account,
		"amount":     balance.String(),
	})
}

// TransactionStatus reports a transaction as pending, confirmed or failed
// with a single application-log probe; it never blocks waiting for
// confirmation.
func (h *Handlers) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	networkID := config.NetworkID(chi.URLParam(r, "network"))
	txHash := chi.URLParam(r, "tx")

	client, ok := h.clients[networkID]
	if !ok {
		h.writeError(w, walleterr.New(walleterr.InvalidParams, "unsupported network: "+string(networkID)))
		return
	}

	appLog, err := client.GetApplicationLog(r.Context(), txHash)
	if err != nil {
		if fault, isFault := rpc.FaultOf(err); isFault && fault.IsNotFound() {
			writeJSON(w, http.StatusOK, map[string]any{"txHash": txHash, "status": "pending"})
			return
		}
		h.writeError(w, err)
		return
	}

	status := "confirmed"
	for _, execution := range appLog.Executions {
		if execution.VMState == "FAULT" {
			status = "failed"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"txHash":      txHash,
		"status":      status,
		"gasConsumed": gasConsumed(appLog),
	})
}

// TransactionWait blocks until the transaction confirms or the retry budget
// runs out. The handler's 60s timeout middleware bounds the worst case; the
// retries query parameter can end the wait sooner.
func (h *Handlers) TransactionWait(w http.ResponseWriter, r *http.Request) {
	networkID := config.NetworkID(chi.URLParam(r, "network"))
	txHash := chi.URLParam(r, "tx")

	opts := confirm.WaitOpts{}
	if raw := r.URL.Query().Get("retries"); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries < 1 {
			h.writeError(w, walleterr.New(walleterr.InvalidParams, "retries must be a positive integer"))
			return
		}
		opts.MaxRetries = retries
	}

	result, err := h.poller.Wait(r.Context(), networkID, txHash, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := "confirmed"
	if result.Faulted() {
		status = "failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"txHash":      txHash,
		"status":      status,
		"retries":     result.Retries,
		"gasConsumed": gasConsumed(result.Log),
	})
}

func gasConsumed(appLog *rpc.ApplicationLog) string {
	if len(appLog.Executions) == 0 {
		return ""
	}
	return appLog.Executions[0].GasConsumed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError translates taxonomy errors into HTTP statuses and a stable
// JSON error shape. The response always carries the error; only the log line
// is deduplicated.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var e *walleterr.Error
	if !errors.As(err, &e) {
		e = walleterr.Wrap(walleterr.Unknown, err.Error(), err)
	}
	if h.dedupe.ShouldNotify(e) {
		walleterr.Log(log, e)
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case walleterr.InvalidParams, walleterr.MalformedInput:
		status = http.StatusBadRequest
	case walleterr.NotConnected, walleterr.NotInstalled:
		status = http.StatusConflict
	case walleterr.ContractInvocationFailed:
		status = http.StatusUnprocessableEntity
	case walleterr.NetworkError, walleterr.CommunicationFailed:
		status = http.StatusBadGateway
	case walleterr.ConfirmationTimeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":    string(e.Kind),
			"message": e.Message,
			"needFix": e.NeedFix,
		},
	})
}
