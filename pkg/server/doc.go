// Package server is the command front end: a TCP listener speaking a
// length-prefixed request/response protocol, a per-connection session
// carrying the authenticated user, and a dispatcher routing verbs to
// family handlers (system, catalogs, games, turns, players, schedules,
// files, cron) under one global service mutex.
//
// Sessions start in admin context; USER drops them to a named user.
// Authorization happens inside each handler: admin-only verbs call
// RequireAdmin, game mutations admit the owner, reads follow game
// visibility.
package server
