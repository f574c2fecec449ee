package object

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// VerifySignature checks a commit or tag's detached GPG signature against
// signedContent (the object's canonical bytes with the gpgsig header
// removed) using the given armored public keyring. It is optional: most
// objects carry no signature, and callers that don't care about
// provenance never call this.
func VerifySignature(signedContent []byte, armoredSig string, keyring openpgp.EntityList) (*openpgp.Entity, error) {
	if strings.TrimSpace(armoredSig) == "" {
		return nil, fmt.Errorf("object: no signature to verify")
	}
	block, err := armor.Decode(strings.NewReader(armoredSig))
	if err != nil {
		return nil, fmt.Errorf("object: decode signature armor: %w", err)
	}
	signer, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(signedContent), block.Body, nil)
	if err != nil {
		return nil, fmt.Errorf("object: signature verification failed: %w", err)
	}
	return signer, nil
}
