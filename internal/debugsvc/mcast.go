package debugsvc

import (
	"encoding/json"
	"net/http"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
)

// TransportInfo is the state of the multicast transport reported by the debug
// API.  *mcast.Transport implements it.
type TransportInfo interface {
	// Senders returns the local addresses of the sending sockets.
	Senders() (laddrs []*netiface.LocalAddr)

	// ReceiverCount returns the number of sockets being read from.
	ReceiverCount() (n int)

	// Interfaces returns the sorted names of the interfaces used for sending.
	Interfaces() (names []string)
}

// mcastHandler reports the state of the multicast transport.
type mcastHandler struct {
	transport TransportInfo
}

// mcastResponse describes the response to the GET /debug/api/mcast HTTP API.
type mcastResponse struct {
	Interfaces []string      `json:"interfaces"`
	Senders    []*senderJSON `json:"senders"`
	Receivers  int           `json:"receivers"`
}

// senderJSON is the JSON representation of a single sender.
type senderJSON struct {
	Interface string `json:"interface"`
	Address   string `json:"address"`
}

// type check
var _ http.Handler = (*mcastHandler)(nil)

// ServeHTTP implements the [http.Handler] interface for *mcastHandler.
func (h *mcastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogutil.MustLoggerFromContext(ctx)

	laddrs := h.transport.Senders()
	resp := &mcastResponse{
		Interfaces: h.transport.Interfaces(),
		Senders:    make([]*senderJSON, 0, len(laddrs)),
		Receivers:  h.transport.ReceiverCount(),
	}

	for _, la := range laddrs {
		resp.Senders = append(resp.Senders, &senderJSON{
			Interface: la.Iface.Interface().Name,
			Address:   la.Addr.String(),
		})
	}

	if resp.Interfaces == nil {
		resp.Interfaces = []string{}
	}

	w.Header().Set(httphdr.ContentType, "application/json")
	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		l.ErrorContext(ctx, "writing response", slogutil.KeyError, err)
	}
}
