// Package api defines the contract between the FlowScript engine and its
// host application: step handlers and predicates, step results, execution
// traces, and the error taxonomy shared by the compiler and the runtime.
package api
