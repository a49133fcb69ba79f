// Package helpers provides test utility functions for the learnsync API.
//
// # JWT Helpers
//
// Mint sign-in tokens with an in-memory key:
//
//	jh := helpers.NewJWTHelper(t)
//	token := jh.GenerateToken(t, "u1")
//	cfg.Session.PublicKeyPath = jh.WritePublicKey(t)
//
// # Request Helpers
//
//	rec := helpers.NewRequest(t, http.MethodPost, "/v1/posts").
//	    WithBody(map[string]string{"content": "hi"}).
//	    Do(handler)
//
// # Assertion Helpers
//
//	helpers.AssertStatus(t, rec, http.StatusCreated)
//	helpers.AssertValidationError(t, rec, "content")
//	helpers.Eventually(t, time.Second, cond, "profile synced")
package helpers
