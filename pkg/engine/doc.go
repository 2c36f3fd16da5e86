// Package engine is the composition root: it turns a Config into a ready
// Completion Client and Plugin Registry, hands both to agents, and exposes
// conversations as Sessions whose activity can be observed on an EventBus.
// Frontends import engine and never wire lower-level packages themselves.
package engine
