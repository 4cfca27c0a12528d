package models

// Reply is the outcome of handling one inbound message. Channel carries an
// unthreaded broadcast to the conversation, Reply a threaded response to the
// triggering message. Either part may be empty; both may be set at once (a
// free-form exchange produces the continuation on the channel and the
// reviewer feedback as a direct reply).
type Reply struct {
	Channel string
	Reply   string
}

// HasChannel reports whether a channel part should be sent.
func (r *Reply) HasChannel() bool {
	return r != nil && r.Channel != ""
}

// HasReply reports whether a threaded reply part should be sent.
func (r *Reply) HasReply() bool {
	return r != nil && r.Reply != ""
}
