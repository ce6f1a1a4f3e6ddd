//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "errors"

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// ErrMicrophone is returned when capture is not authorized yet
var ErrMicrophone = errors.New("microphone permission not granted")

// EnsurePermissions checks microphone access and triggers the system prompt when undecided
func EnsurePermissions() error {
	switch int(C.checkMicrophonePermission()) {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		C.requestMicrophonePermission()
	}
	return ErrMicrophone
}
