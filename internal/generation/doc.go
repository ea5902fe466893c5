// Package generation defines the progress model for website generation runs:
// the record returned to pollers, the webhook events emitted by the external
// workflow, the table that maps one onto the other, and the request accepted
// by POST /generate.
package generation
