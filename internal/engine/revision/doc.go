// Package revision implements the revision graph: a tree of immutable
// snapshots of a piece list, navigable by parent/child (undo/redo), by
// creation order (earlier/later), and by wall-clock proximity
// (restore).
//
// Each Revision records the sequence of piece-list Changes that
// transform its parent's content into its own. Moving the "current"
// pointer from one revision to another walks the unique tree path
// between them through their lowest common ancestor, inverting each
// Change on the way up and applying each Change on the way down — the
// replay model is what keeps navigation cost proportional to path
// length rather than to absolute history size.
package revision
