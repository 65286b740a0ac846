// Package validator checks request and event structs against their
// `validate` tags and turns failures into field-keyed messages.
package validator
