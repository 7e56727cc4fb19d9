/*
File Name:  Rotation.go

Creator-driven epoch rotation and the key-verification handshake (§4.6).
Rotation is plain bookkeeping over the Store; the wire messages it
produces (channelPasswordUpdate, channelKeyVerifyRequest/Response) are
encoded by the protocol package's cursor-based codec, not here, since
this package owns key material and math, not framing.
*/

package channelkey

// Rotate derives the next epoch for a channel and installs it as current.
// Callers are responsible for building and sending the resulting
// channelPasswordUpdate to each member, encrypting newPassword under each
// recipient's individual Noise session.
func Rotate(store *Store, newPassword, channel, creatorFingerprint string) *Epoch {
	prev, _ := store.Current(channel)
	nextNumber := uint64(0)
	if prev != nil {
		nextNumber = prev.EpochNumber + 1
	}
	fresh := NewEpoch(newPassword, channel, creatorFingerprint, nextNumber, prev)
	store.AddEpoch(fresh)
	return fresh
}

// VerifyCommitment reports whether a peer's claimed commitment matches
// any currently known epoch for the channel (a joiner may be slightly
// behind the latest rotation during the grace window).
func VerifyCommitment(store *Store, channel, commitmentHex string) bool {
	for _, key := range store.CandidateKeys(channel) {
		if CommitmentHex(key) == commitmentHex {
			return true
		}
	}
	return false
}
