package domain

// KeyPrefix namespaces every key cityrag writes to a shared key-value store.
const KeyPrefix = "cityrag:"
