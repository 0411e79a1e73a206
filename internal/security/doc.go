// Package security provides the validators that gate every side effect a
// tool can perform: filesystem paths (Workspace), shell execution (Shell),
// and outbound HTTP (HTTP).
//
// Validators are constructed once at startup and injected into toolsets.
// Consumers declare the small interface slice they need, which keeps the
// toolsets mockable in tests.
package security
