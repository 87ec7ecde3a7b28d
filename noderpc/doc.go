/*
Package noderpc is the command layer over the control protocol: typed node
administration commands encoded into the opaque payloads carried by
control.Conn. It knows what "getstats" or "sendmessage" mean; the control
package below it only moves correlated byte payloads.

Requests and responses are CBOR envelopes. A request names its method and
carries a method-specific body; a response carries either a body or the node's
error text. Timeouts and retries are the caller's concern: a failed query is
reported, never resent.
*/
package noderpc
