// Package twofactor adds a one-time code step to password login.
//
// Every call re-checks the password. Possession of a code alone never logs
// anyone in, and none of the calls may be made from an already authenticated
// session.
//
//	svc := twofactor.NewTwoFactorService(repo, account.NewBcryptVerifier(), sessions,
//		twofactor.Settings{Enabled: true, FieldName: "twoFactorCode"},
//		twofactor.WithCodeSender(twofactor.NewNotificationCodeSender(notificationManager)),
//	)
//
//	res, err := svc.StartLogin(ctx, account.Identity{Email: email}, credential, "")
//	// res.AvailableMethods lists email/phone, or res.LoggedIn when no code is needed
//	_, err = svc.DispatchCode(ctx, identity, credential, "email")
//	login, err := svc.VerifyAndLogin(ctx, identity, credential, code)
//
// # Pending codes
//
// A user has at most one pending code, stored in the user field named by
// Settings.FieldName. Sending a new code overwrites it; a successful
// verification or an Abort removes it. A code is stored only after the sender
// accepted it, so a failed delivery keeps whatever code was pending before.
// Verification removes the code only once the login has been issued, so a
// login refused by the gate leaves it usable.
//
// # Concurrency
//
// Updates to the pending code are last write wins. Two DispatchCode calls for
// the same user race and the code stored last is the one that verifies, even
// if the user received the other one first. VerifyAndLogin racing with Abort
// ends in whichever write lands last; a verification that already read the
// matching code still completes its login after a concurrent Abort. No lock is
// held between calls. Closing these races needs a store with per-user
// compare-and-swap, which Repository does not offer.
package twofactor
