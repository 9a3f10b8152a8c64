// Package transport defines the contracts shared by the smart-protocol
// subtransports (SSH, HTTP) and the smart client that drives them.
//
// A SmartSubtransport turns a repository URL plus a service action into a
// Stream: an opaque bidirectional byte pipe the smart client reads ref
// advertisements from and writes negotiation requests to. The subtransport
// owns connection setup, credential negotiation and teardown; the client
// never sees sockets or sessions.
//
// Actions come in listing/continuation pairs. A listing action
// (ServiceUploadPackLs, ServiceReceivePackLs) establishes a fresh connection
// and returns a new Stream. Its continuation (ServiceUploadPack,
// ServiceReceivePack) reuses the Stream the listing action opened; invoking a
// continuation without its listing is a sequencing error. At most one Stream
// is live per subtransport at any time, and the caller must close it before
// closing the subtransport.
//
// Example usage:
//
//	owner := &transport.Owner{
//	    URL:         "git@github.com:user/repo.git",
//	    Credentials: promptForCredentials,
//	}
//	sub, err := transport.New(owner)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stream, err := sub.Action(owner.URL, transport.ServiceUploadPackLs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// read the ref advertisement from stream, then request
//	// ServiceUploadPack to negotiate a pack on the same connection
package transport
