// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides moderator keys and voter identity extraction.

# Moderator Keys

Moderator keys use HMAC-SHA256 to create deterministic, verifiable keys:

	key := auth.GenerateModeratorKey(eventID, salt)
	err := auth.ValidateModeratorKey(eventID, key, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same event ID and salt always produce the same key. This allows
validation without storing the key in the database. Moderators send it in
the X-Moderator-Key header.

# Voter Identity

Voters are authenticated upstream. The identity provider forwards a stable
voter id in the X-Voter-ID header:

	voterID, err := auth.VoterID(r)

Missing ids return ErrMissingVoterID. Ids longer than MaxVoterIDLength or
containing control characters return ErrInvalidVoterID.
*/
package auth
