/*
Package session correlates an OIDC provider's session identifier (the sid
claim) with the relying party's own local web sessions, so that a back-channel
logout notification, which carries only a sid or a sub, can find and end the
right local session.

Primary types provided by the package:

* Handle: the opaque local session capability (ID and Invalidate). Handles are
owned by the web layer; this package only keeps lookup references to them.

* Store: a dual-indexed, time-bounded cache of sid -> Handle and
localID -> Handle. Both indices are always changed together.

* SubjectIndex: a secondary index of sub -> set of local session ids used to
fan out a logout over every session a user has.

* Registry: the hooks the rest of the application calls: OnLoginSuccess,
OnBackchannelLogout and OnLocalSessionEnded.

Example:

	s, err := session.NewStore(session.WithTTL(8 * time.Hour))
	if err != nil {
		// handle error
	}
	r, err := session.NewRegistry(s, session.NewSubjectIndex())
	if err != nil {
		// handle error
	}
	defer r.Close()

	// after a successful authentication
	_ = r.OnLoginSuccess(sid, sub, webSession)

	// when the provider pushes a logout token
	_ = r.OnBackchannelLogout(map[string]string{"sid": sid})
*/
package session
