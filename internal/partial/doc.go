// Package partial reassembles container log lines that Docker's journald
// driver splits into fragments.
//
// Fragments carry CONTAINER_PARTIAL_MESSAGE=true and share a CONTAINER_ID; the
// closing fragment omits the flag. The Reassembler keeps at most one pending
// entry per container, appends each fragment's MESSAGE to it, and releases the
// joined entry when the closing fragment arrives. The pending set is
// snapshotted through a position.Store after every mutation so a restart
// resumes mid-message.
//
// Stale fragments are evicted by Cleanup. Cleanup runs with a configured
// probability per processed entry rather than on a timer, so under low traffic
// a stale fragment can outlive its retention until a later draw or Close.
package partial
