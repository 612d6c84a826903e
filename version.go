package messaging

// Version is the library version reported in the X-Firebase-Client header.
const Version = "0.3.0"
