package main

// General API documentation for swaggo. Run `swag init` here to generate docs.
//
// @title           ocrd API
// @version         1.0
// @description     HTTP API for local document OCR and text-to-speech.
//
// @contact.name   ocrd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
