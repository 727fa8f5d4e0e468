package domain

// Key methods satisfy the storage package's generic Entity interface
// without storage importing domain's internals — every durable entity's
// primary key is simply its ID.

func (m *Model) Key() string               { return m.ID }
func (c *Chain) Key() string               { return c.ID }
func (w *Workflow) Key() string            { return w.ID }
func (p *Prompt) Key() string              { return p.ID }
func (c *Credential) Key() string          { return c.ID }
func (b *Budget) Key() string              { return b.ID }
func (t *Team) Key() string                { return t.ID }
func (u *User) Key() string                { return u.ID }
func (k *ApiKey) Key() string              { return k.ID }
func (e *Experiment) Key() string          { return e.ID }
func (r *ExperimentRecord) Key() string    { return r.ID }
func (u *UsageRecord) Key() string         { return u.ID }
func (w *WebhookSubscription) Key() string { return w.ID }
func (w *WebhookDelivery) Key() string     { return w.ID }
