// Package secrets seals small records, such as stored OAuth tokens, with AES-256-GCM.
//
// A Sealer derives its cipher key from a 32-byte master key with HKDF-SHA-256, using the
// purpose string as HKDF info, so one master key can protect several stores without key
// reuse. Each sealed record is nonce || ciphertext || tag. Callers pass the record's storage
// key as additional data, which binds a ciphertext to the name it was written under:
//
//	key, _ := secrets.ParseKey(os.Getenv("SIGNIN_STORE_KEY"))
//	s, err := secrets.NewSealer(key, "credentials")
//	if err != nil {
//	    return err
//	}
//	sealed, _ := s.Seal(tokenJSON, []byte(userID))
//	plain, _ := s.Open(sealed, []byte(userID))
package secrets
