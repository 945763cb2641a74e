package login

// Locators tried in order; the first visible match wins.
var (
	consentLabels = []string{"Reject", "Odrzuć", "Accept", "Akceptuj"}

	codeInputSelectors = []string{
		"input#input__email_verification_pin",
		"input#input__phone_verification_pin",
		`input[name="pin"]`,
		`input[name="verificationCode"]`,
		`input[type="text"]`,
	}

	codeSubmitSelectors = []string{
		`button[type="submit"]`,
		"button#two-step-submit-button",
		"button.btn__primary--large",
		"form button",
	}
)

const (
	usernameSelector = "input#username"
	passwordSelector = "input#password"
	submitSelector   = `button[type="submit"]`
)

// consentFallbackScript clicks a reject (preferred) or accept button found by loose text
// match. Some consent dialogs render outside the elements the label probe can reach.
const consentFallbackScript = `(() => {
  const buttons = Array.from(document.querySelectorAll('button'));
  const reject = buttons.find(b => /reject|odrzuć/i.test(b.textContent));
  const accept = buttons.find(b => /accept|akceptuj/i.test(b.textContent));
  const target = reject || accept;
  if (target) { target.click(); }
  return !!target;
})()`
