package dispatcher

import (
	"encoding/json"
	"fmt"
)

// jsCall renders a JS function expression applied to one argument, encoded as
// JSON so arbitrary message text survives quoting.
func jsCall(fn string, arg any) string {
	encoded, err := json.Marshal(arg)
	if err != nil {
		encoded = []byte("null")
	}
	return fmt.Sprintf("(%s)(%s)", fn, encoded)
}

// The chat UI ships several DOM variants; every snippet probes the known
// selectors in order.

const countMerchantMessagesJS = `(() => {
	const selectors = [
		'div.index-module__messageList--GBz6X',
		'div.messageList-k_OG24',
		'div.chatd-scrollView',
		'div[class*="messageList" i]',
		'div[class*="message-list" i]',
	];
	for (const selector of selectors) {
		const container = document.querySelector(selector);
		if (!container) continue;
		const messages = container.querySelectorAll(
			'div.chatd-message--right, div[class*="message" i][class*="right" i], div[class*="right" i][class*="chat" i]'
		);
		return (messages && messages.length) ? messages.length : 0;
	}
	return 0;
})()`

const chatInputSelectorsJS = `[
	'textarea[placeholder="Send a message"]',
	'textarea[placeholder*="Send a message"]',
	'#im_sdk_chat_input textarea',
	'textarea[placeholder*="message" i]',
	'div[contenteditable="true"][role="textbox"]',
	'div[contenteditable="true"]',
]`

const fillChatInputJS = `(value) => {
	const selectors = ` + chatInputSelectorsJS + `;
	for (const selector of selectors) {
		const el = document.querySelector(selector);
		if (!el || el.offsetParent === null) continue;
		el.focus();
		if (el.tagName === 'TEXTAREA') {
			el.value = value;
		} else {
			el.textContent = value;
		}
		el.dispatchEvent(new Event('input', { bubbles: true }));
		return true;
	}
	const ta = document.querySelector(
		'#im_sdk_chat_input textarea, textarea#imTextarea, textarea[placeholder*="message" i], textarea'
	);
	if (ta) {
		ta.focus();
		ta.value = value;
		ta.dispatchEvent(new Event('input', { bubbles: true }));
		return true;
	}
	return false;
}`

const chatInputVisibleJS = `(() => {
	const selectors = ` + chatInputSelectorsJS + `;
	return selectors.some((selector) => {
		const el = document.querySelector(selector);
		return !!el && el.offsetParent !== null;
	});
})()`

const chatInputClearedJS = `(() => {
	const selectors = ` + chatInputSelectorsJS + `;
	for (const selector of selectors) {
		const el = document.querySelector(selector);
		if (!el || el.offsetParent === null) continue;
		const value = el.tagName === 'TEXTAREA' ? el.value : el.textContent;
		return !value || !value.trim();
	}
	return false;
})()`

const clickSendButtonJS = `(() => {
	const selectors = [
		'button[aria-label*="Send" i]',
		'button[data-e2e*="send" i]',
		'button[type="submit"]',
	];
	for (const selector of selectors) {
		const button = document.querySelector(selector);
		if (button && button.offsetParent !== null) {
			button.click();
			return true;
		}
	}
	const byText = Array.from(document.querySelectorAll('button'))
		.find((b) => b.offsetParent !== null && (b.textContent || '').trim() === 'Send');
	if (byText) {
		byText.click();
		return true;
	}
	return false;
})()`

// openContactDialogJS activates the profile tab and clicks the contact info
// button. Returns whether the dialog was opened.
const openContactDialogJS = `(() => {
	const tab = document.querySelector('#arco-tabs-0-tab-0')
		|| Array.from(document.querySelectorAll('div[role="tab"]'))
			.find((t) => (t.textContent || '').includes('Profile'));
	if (tab && tab.getAttribute('aria-selected') !== 'true') {
		tab.click();
	}
	const panel = document.querySelector('#arco-tabs-0-panel-0');
	if (!panel) return false;
	const button = panel.querySelector('button');
	if (!button) return false;
	button.click();
	return true;
})()`

const extractWhatsappJS = `(() => {
	const unavailable = Array.from(document.querySelectorAll('div, span'))
		.some((el) => (el.textContent || '').includes(
			"This creator doesn't have contact information available."));
	if (unavailable) return '';
	const rows = document.querySelectorAll('div[class*="dialog" i] div, div[role="dialog"] div');
	for (const row of rows) {
		const label = row.querySelector('span');
		if (!label) continue;
		if (!(label.textContent || '').toLowerCase().includes('whatsapp')) continue;
		const value = row.querySelector('div span, div div span');
		if (value && value !== label && (value.textContent || '').trim()) {
			return value.textContent.trim();
		}
	}
	return '';
})()`
