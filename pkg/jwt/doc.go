// Package jwt signs and verifies the custom sign-in tokens used for token-based
// sessions.
//
// Tokens are RS256 JWTs built with github.com/golang-jwt/jwt/v5. The identity is
// carried in the user_id claim, falling back to sub.
//
//	signer, _ := jwt.NewSigner("./keys/private.pem", "learnsync.gippro.dev", time.Hour)
//	token, _ := signer.Sign("student-42")
//
//	verifier, _ := jwt.NewVerifier("./keys/public.pem", "learnsync.gippro.dev")
//	claims, err := verifier.Verify(token)
//	uid := claims.Identity()
package jwt
