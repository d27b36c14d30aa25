package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/collections-agent/pkg/errors"
)

// SignatureHeader carries the HMAC Exotel computes over the callback form
const SignatureHeader = "X-Exotel-Signature"

// Sign computes the hex HMAC-SHA256 of the sorted form values
func Sign(secret string, formValues url.Values) string {
	keys := make([]string, 0, len(formValues))
	for k := range formValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range formValues[k] {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyExotelSignature checks the callback signature. An empty secret
// skips verification for development.
func VerifyExotelSignature(secret string, formValues url.Values, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return fmt.Errorf("signature header missing")
	}
	if !hmac.Equal([]byte(Sign(secret, formValues)), []byte(signature)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// RequireExotelSignature rejects callbacks whose form does not verify
func RequireExotelSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			errors.BadRequest(c, "invalid form body")
			c.Abort()
			return
		}
		if err := VerifyExotelSignature(secret, c.Request.PostForm, c.GetHeader(SignatureHeader)); err != nil {
			errors.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}
