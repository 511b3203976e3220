// Package ast defines the FlowScript abstract syntax tree: node kinds,
// policy specifications, and the flat flow table produced by the parser
// and checked by the resolver. The tree is exposed read-only so that
// visualization exporters can consume it without affecting execution.
package ast
