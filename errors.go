// errors.go: structured error definitions for the reloading wrapper
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the reloading wrapper
const (
	// Bundle load errors (1000-1099)
	ErrCodeBundleHash        = "LOAD_1001"
	ErrCodeBundleCopy        = "LOAD_1002"
	ErrCodeBundleOpen        = "LOAD_1003"
	ErrCodeEntrySymbol       = "LOAD_1004"
	ErrCodeEntryType         = "LOAD_1005"
	ErrCodeInvalidBundlePath = "LOAD_1006"
	ErrCodeOpenerUnsupported = "LOAD_1007"
	ErrCodePluginPathReused  = "LOAD_1008"

	// Reload pipeline errors (1100-1199)
	ErrCodeReloadFailed = "RELOAD_1101"

	// Swap protocol errors (1200-1299)
	ErrCodePluginNotFound       = "SWAP_1201"
	ErrCodeInstanceCreation     = "SWAP_1202"
	ErrCodeInstanceInit         = "SWAP_1203"
	ErrCodeActivation           = "SWAP_1204"
	ErrCodeNotActivated         = "SWAP_1205"
	ErrCodeAlreadyActivated     = "SWAP_1206"
	ErrCodeMissingAudioConfig   = "SWAP_1207"
	ErrCodeStaleInstanceHandle  = "SWAP_1208"
	ErrCodeProcessingNotStarted = "SWAP_1209"
	ErrCodeWrapperDestroyed     = "SWAP_1210"

	// Extension call errors (1300-1399)
	ErrCodeExtensionUnsupported = "EXT_1301"
	ErrCodeStateTransfer        = "EXT_1302"
	ErrCodeGUITransfer          = "EXT_1303"
	ErrCodeParamCall            = "EXT_1304"
	ErrCodeTimerRegistration    = "EXT_1305"

	// Watcher errors (1400-1499)
	ErrCodeWatcherUnavailable = "WATCH_1401"
	ErrCodeWatchPath          = "WATCH_1402"
	ErrCodeSymlinkLoop        = "WATCH_1403"

	// Configuration management errors (1700-1799)
	ErrCodeConfigNotFound        = "CONFIG_1701"
	ErrCodeConfigParseError      = "CONFIG_1702"
	ErrCodeConfigValidationError = "CONFIG_1703"
	ErrCodeConfigWatcherError    = "CONFIG_1704"
	ErrCodeConfigPathError       = "CONFIG_1705"
	ErrCodeConfigFileError       = "CONFIG_1706"
	ErrCodeAuditError            = "CONFIG_1707"
)

// newOrWrap builds an error with the given code, wrapping cause when present.
func newOrWrap(cause error, code, message string) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, errors.ErrorCode(code), message)
	}
	return errors.New(errors.ErrorCode(code), message)
}

// Bundle load error constructors

func NewBundleHashError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeBundleHash, "Bundle hash error").
		WithUserMessage("Failed to compute the bundle content hash").
		WithContext("bundle_path", path).
		WithSeverity("warning").
		AsRetryable()
}

func NewBundleCopyError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeBundleCopy, "Bundle copy error").
		WithUserMessage("Failed to copy the bundle to a temporary location").
		WithContext("bundle_path", path).
		WithSeverity("error").
		AsRetryable()
}

func NewBundleOpenError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeBundleOpen, "Bundle open error").
		WithUserMessage("The plugin bundle could not be loaded").
		WithContext("bundle_path", path).
		WithSeverity("error").
		AsRetryable()
}

func NewEntrySymbolError(path, symbol string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeEntrySymbol, "Entry symbol not found").
		WithUserMessage("The plugin bundle does not export the expected entry").
		WithContext("bundle_path", path).
		WithContext("symbol", symbol).
		WithSeverity("error").
		AsRetryable()
}

func NewEntryTypeError(path, symbol, got string) *errors.Error {
	return errors.New(ErrCodeEntryType, "Entry symbol has an unexpected type").
		WithUserMessage("The plugin bundle entry does not match the expected contract").
		WithContext("bundle_path", path).
		WithContext("symbol", symbol).
		WithContext("type", got).
		WithSeverity("error").
		AsRetryable()
}

func NewInvalidBundlePathError(path string) *errors.Error {
	return errors.New(ErrCodeInvalidBundlePath, "Invalid bundle path").
		WithUserMessage("The bundle path is empty or not valid UTF-8").
		WithContext("bundle_path", path).
		WithSeverity("error")
}

func NewOpenerUnsupportedError(platform string) *errors.Error {
	return errors.New(ErrCodeOpenerUnsupported, "Bundle opener unsupported").
		WithUserMessage("Dynamic bundle loading is not available on this platform").
		WithContext("platform", platform).
		WithSeverity("error")
}

// NewPluginPathReusedError reports a rebuilt Go plugin that the runtime
// refuses because a build with the same plugin path is already loaded.
func NewPluginPathReusedError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodePluginPathReused, "Bundle plugin path already loaded").
		WithUserMessage("Rebuild the bundle with a unique plugin path, for example go build -buildmode=plugin -ldflags=\"-pluginpath=gain-$(date +%s)\"").
		WithContext("bundle_path", path).
		WithSeverity("error")
}

// Reload pipeline error constructors

func NewReloadFailedError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeReloadFailed, "Reload attempt failed").
		WithUserMessage("The bundle changed but could not be reloaded").
		WithContext("bundle_path", path).
		WithSeverity("warning").
		AsRetryable()
}

// Swap protocol error constructors

func NewPluginNotFoundError(pluginID string) *errors.Error {
	return errors.New(ErrCodePluginNotFound, "Plugin not found").
		WithUserMessage("The bundle does not expose a plugin with this id").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewInstanceCreationError(pluginID string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeInstanceCreation, "Instance creation failed").
		WithUserMessage("The plugin instance could not be created").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewInstanceInitError(pluginID string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeInstanceInit, "Instance initialization failed").
		WithUserMessage("The plugin instance failed to initialize").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewActivationError(pluginID string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeActivation, "Activation failed").
		WithUserMessage("The plugin instance could not be activated").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewNotActivatedError(operation string) *errors.Error {
	return errors.New(ErrCodeNotActivated, "Plugin is not activated").
		WithUserMessage("The operation requires an activated plugin").
		WithContext("operation", operation).
		WithSeverity("error")
}

func NewAlreadyActivatedError() *errors.Error {
	return errors.New(ErrCodeAlreadyActivated, "Plugin is already activated").
		WithSeverity("error")
}

func NewMissingAudioConfigError() *errors.Error {
	return errors.New(ErrCodeMissingAudioConfig, "No audio configuration available").
		WithUserMessage("The plugin cannot be activated without a valid audio configuration").
		WithSeverity("error")
}

func NewStaleInstanceHandleError(handle InstanceHandle) *errors.Error {
	return errors.New(ErrCodeStaleInstanceHandle, "Stale instance handle").
		WithContext("index", handle.index).
		WithContext("generation", handle.generation).
		WithSeverity("warning")
}

func NewProcessingNotStartedError(cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeProcessingNotStarted, "Processing not started").
		WithSeverity("error")
}

func NewWrapperDestroyedError() *errors.Error {
	return errors.New(ErrCodeWrapperDestroyed, "Wrapper already destroyed").
		WithSeverity("error")
}

// Extension call error constructors

func NewExtensionUnsupportedError(extension string) *errors.Error {
	return errors.New(ErrCodeExtensionUnsupported, "Extension not supported").
		WithContext("extension", extension).
		WithSeverity("warning")
}

func NewStateTransferError(step string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeStateTransfer, "State transfer failed").
		WithUserMessage("The plugin state could not be carried over to the reloaded instance").
		WithContext("step", step).
		WithSeverity("warning")
}

func NewGUITransferError(step string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeGUITransfer, "GUI transfer failed").
		WithUserMessage("The plugin editor could not be fully restored").
		WithContext("step", step).
		WithSeverity("warning")
}

func NewParamCallError(operation string, paramID uint32, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeParamCall, "Parameter call failed").
		WithContext("operation", operation).
		WithContext("param_id", paramID).
		WithSeverity("warning")
}

func NewTimerRegistrationError(cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeTimerRegistration, "Timer registration failed").
		WithUserMessage("Reload checks will only run on host callbacks").
		WithSeverity("warning")
}

// Watcher error constructors

func NewWatcherUnavailableError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeWatcherUnavailable, "File watcher unavailable").
		WithUserMessage("Hot reload is disabled for this bundle").
		WithContext("bundle_path", path).
		WithSeverity("warning")
}

func NewWatchPathError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeWatchPath, "Failed to watch path").
		WithContext("path", path).
		WithSeverity("warning")
}

func NewSymlinkLoopError(path string, depth int) *errors.Error {
	return errors.New(ErrCodeSymlinkLoop, "Symlink chain loops or is too long").
		WithContext("path", path).
		WithContext("depth", depth).
		WithSeverity("warning")
}

// Configuration management error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("Configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeConfigWatcherError, "Configuration watcher error: "+message).
		WithUserMessage("Configuration monitoring failed").
		WithSeverity("error")
}

func NewConfigPathError(path string, message string) *errors.Error {
	return errors.New(ErrCodeConfigPathError, "Configuration path error: "+message).
		WithUserMessage("Invalid configuration file path").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigFileError(path string, message string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeConfigFileError, "Configuration file error: "+message).
		WithUserMessage("Configuration file access failed").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewAuditError(message string, cause error) *errors.Error {
	return newOrWrap(cause, ErrCodeAuditError, "Audit error: "+message).
		WithUserMessage("Audit logging failed").
		WithSeverity("warning")
}

// IsRetryable reports whether err is a structured error marked retryable.
func IsRetryable(err error) bool {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.IsRetryable()
}

// ErrorCodeOf returns the structured error code of err, or an empty string.
func ErrorCodeOf(err error) string {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return ""
	}
	return string(e.Code)
}
