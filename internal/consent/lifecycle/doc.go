// Package lifecycle is the consent lifecycle engine: a pure status calculator,
// the renew and withdraw transitions, the presentation mapper and the reminder
// policy.
//
// Nothing here reads the wall clock, touches storage or starts goroutines. Every
// function takes "now" explicitly, so one logical operation (check status, then
// transition) is evaluated against one instant and every boundary is
// reproducible in tests. Persistence and compare-and-swap live in the consent
// service and stores.
package lifecycle
