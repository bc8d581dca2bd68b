package bridge

// base64Encoder is a JS function from an ArrayBuffer to standard padded base64 text.
const base64Encoder = `(buffer) => {
	const alphabet = 'ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/';
	const bytes = new Uint8Array(buffer);
	const length = bytes.length;
	const tail = length % 3;
	let out = '';
	let i = 0;
	for (; i < length - tail; i += 3) {
		const n = (bytes[i] << 16) | (bytes[i + 1] << 8) | bytes[i + 2];
		out += alphabet[n >> 18] + alphabet[(n >> 12) & 63] + alphabet[(n >> 6) & 63] + alphabet[n & 63];
	}
	if (tail === 1) {
		const n = bytes[length - 1];
		out += alphabet[n >> 2] + alphabet[(n << 4) & 63] + '==';
	} else if (tail === 2) {
		const n = (bytes[length - 2] << 8) | bytes[length - 1];
		out += alphabet[n >> 10] + alphabet[(n >> 4) & 63] + alphabet[(n << 2) & 63] + '=';
	}
	return out;
}`

// fetchScript reads uri inside the page and resolves with its bytes as base64,
// or with the numeric status when the request fails.
const fetchScript = `(uri) => new Promise((resolve) => {
	const toBase64 = ` + base64Encoder + `;
	const xhr = new XMLHttpRequest();
	xhr.responseType = 'arraybuffer';
	xhr.onload = () => {
		if (xhr.status !== 0 && (xhr.status < 200 || xhr.status > 299)) {
			resolve(xhr.status);
			return;
		}
		resolve(toBase64(xhr.response));
	};
	xhr.onerror = () => resolve(xhr.status);
	xhr.open('GET', uri);
	xhr.send();
})`
