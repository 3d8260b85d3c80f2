// Package api implements the HTTP surface: account endpoints
// (register, login, logout), the member profile, the moderation
// endpoints, and the forum content endpoints. Routing uses gorilla/mux;
// authentication and authorization happen in the middleware pipeline
// assembled by Server.Handler.
package api
