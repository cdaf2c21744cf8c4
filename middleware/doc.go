// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware holds the HTTP plumbing shared by every route.

WithLogging wraps a handler and logs one line when the request starts and
one when it finishes, with the status code, duration and client address
from GetClientIP (X-Forwarded-For, then X-Real-IP, then RemoteAddr). The
status recorder passes Hijack through so the websocket route can use it:

	mux.HandleFunc("GET /events/{id}/stream", middleware.WithLogging(h.Stream))

CORS wraps the whole mux in main. It echoes the request origin and allows
the X-Moderator-Key and X-Voter-ID headers used by the moderator console
and the voter page.

Handlers answer through JSONResponse and ErrorResponse, and read request
bodies with ParseJSONBody, which stops at MaxBodyBytes:

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
