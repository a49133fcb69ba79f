// Package handler renders the local mirror over HTTP and turns requests into
// dispatcher actions.
//
// Each handler struct takes the narrow interfaces it needs (StateSource,
// Actions, Tutor, Market) so tests can substitute func-field mocks. Responses
// go through WriteData and WriteError; errors become RFC 9457 problem details
// via MapError.
//
// Routes:
//
//	GET   /health
//	GET   /v1/state                   mirror, dashboard, ranked videos
//	GET   /v1/events                  SSE stream (topic=mirror|simulator)
//	POST  /v1/modules/{moduleId}/complete
//	POST  /v1/resources/toggle
//	POST  /v1/posts
//	PATCH /v1/profile
//	POST  /v1/profile/reset           requires {"confirm": true}
//	POST  /v1/settings/dark-mode
//	POST  /v1/nav
//	GET   /v1/chat, POST /v1/chat
//	GET   /v1/simulator, POST /v1/simulator/trade
package handler
