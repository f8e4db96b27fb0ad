package pipeline

// Context holds the sinks shared between the acquisition loop and its
// consumers. It is built once in main and passed explicitly.
type Context struct {
	Live    *LiveSink
	History *HistorySink
}

// NewContext creates both sinks
func NewContext(historyCapacity int) *Context {
	return &Context{
		Live:    NewLiveSink(),
		History: NewHistorySink(historyCapacity),
	}
}

// Publish hands s to both sinks. The caller keeps its own reference.
func (c *Context) Publish(s *Snapshot) {
	c.Live.Publish(s)
	c.History.Publish(s)
}

// Close releases everything the sinks hold
func (c *Context) Close() {
	c.Live.Close()
	c.History.Close()
}
