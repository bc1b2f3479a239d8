package session

import "fmt"

// Spoken messages.
const (
	msgCaptureFailed            = "Could not capture an image from the camera."
	msgQueryFailedOnline        = "Sorry, I encountered an error. Please try again."
	msgQueryFailedOffline       = "The operation failed because you are offline."
	msgNotUnderstood            = "Sorry, I could not understand. Please try again."
	msgNoSpeech                 = "I didn't hear anything. Please try again."
	msgNavigationStart          = "Starting navigation. Be careful."
	msgNavigationLost           = "Navigation stopped due to lost connection."
	msgNavigationStopped        = "Navigation stopped."
	msgNavigationFailed         = "Navigation stopped after repeated errors."
	msgConnectionLostFeature    = "Connection lost. Functionality is limited."
	msgConnectionLostContinuous = "Connection lost. Continuous mode disabled."
	msgSwitchToManual           = "Please switch to manual mode to use this feature."
	msgOffline                  = "This feature requires an internet connection. You are currently offline."
	msgContinuousOn             = "Continuous mode activated."
	msgManualOn                 = "Manual mode activated."
	msgSayName                  = "Please say the person's name."
	msgProvideName              = "Please provide a name."
	msgCaptureImageToRemember   = "Could not capture an image to remember."
	msgReady                    = "OptiRead is ready. Use the buttons below."
	msgCameraUnavailable        = "Camera is not available. Please check the camera connection."
)

// Status lines shown by the state endpoint.
const (
	statusInitializing    = "Initializing OptiRead..."
	statusReady           = "Ready"
	statusInactive        = "Inactive"
	statusDescribing      = "Analyzing scene..."
	statusPerson          = "Analyzing person..."
	statusListening       = "Listening for question..."
	statusNavigation      = "Navigation mode active."
	statusContinuous      = "Continuous mode active"
	statusListeningName   = "Listening for name..."
	statusRememberingName = "Remembering %s..."
	statusQuestion        = "Question received: %q. Analyzing..."
)

func msgLanguageSet(name string) string {
	return fmt.Sprintf("Language set to %s", name)
}

func msgVoiceUnavailable(name string) string {
	return fmt.Sprintf("Sorry, a voice for %s is not available on this device. Reverting to the previous language.", name)
}

func msgRemembered(name string) string {
	return fmt.Sprintf("Okay, I've remembered %s.", name)
}

func msgSaveFailed(name string) string {
	return fmt.Sprintf("Sorry, there was an error saving %s.", name)
}
