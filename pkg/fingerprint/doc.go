/*
Package fingerprint tracks which local files have already been shipped to the
remote host.

Each file is identified by its canonical path, and is fingerprinted by the MD5
digest of its contents.

A file is "dirty" if it has never been recorded, or if its current digest
differs from the recorded one. Only the most recent digest is remembered, so a
file whose contents revert to an older version is dirty again.

Digests are staged in a Pending set while an archive is being built, and only
committed to the Store once the archive has reached the remote host.
*/
package fingerprint
