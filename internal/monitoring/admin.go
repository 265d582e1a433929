package monitoring

import (
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/rover.bridge/internal/httputil"
)

// AttachAdminRoutes mounts the stream counters on the /debug/ surface of mux.
// These routes are only reachable from localhost or over Tailscale.
func (r *Registry) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Streams", func() any {
		return len(r.Totals())
	})

	debug.HandleFunc("streams", "per-stream datagram and fault counters", func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, r.Totals())
	})
}
