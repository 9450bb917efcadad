package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide explains how to copy the session cookies of a browser login,
// for accounts where the password login is blocked by a checkpoint.
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Importing a browser session")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in at https://www.instagram.com in your browser.")
	fmt.Fprintln(w, "2. Open the developer tools (F12) and select the Application or Storage tab.")
	fmt.Fprintln(w, "3. Under Cookies, pick https://www.instagram.com.")
	fmt.Fprintln(w, "4. Copy the values of these cookies:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   sessionid    long value containing %3A")
	fmt.Fprintln(w, "   csrftoken    32 characters")
	fmt.Fprintln(w, "   ds_user_id   numeric (optional)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These cookies give full access to the account. They are stored in the")
	fmt.Fprintln(w, "system keyring, or an encrypted file when no keyring is available.")
	fmt.Fprintln(w, "They can also be passed as IGCRAWLER_SESSION_ID and IGCRAWLER_CSRF_TOKEN.")
	fmt.Fprintln(w, rule)
}
