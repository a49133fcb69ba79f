// Package chat talks to the tutor completion API.
//
// Each call sends the system prompt and a bounded window of the local
// transcript, so the tutor sees recent context without the request growing
// with the conversation. Failures never reach the view as errors: Reply maps
// them to fixed bot messages.
package chat
