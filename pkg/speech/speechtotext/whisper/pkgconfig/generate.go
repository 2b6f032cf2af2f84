// Package pkgconfig generates the pkg-config files the whisper engine links
// against (see the "#cgo pkg-config" lines of
// implementations/whisper/transcriber.go).
//
// The prefix is relative to the directory of the .pc files and resolves to
// thirdparty/whisper.cpp at the root of this module, a whisper.cpp checkout
// that is not part of the repository:
//
//	git clone https://github.com/ggerganov/whisper.cpp thirdparty/whisper.cpp
//	cmake -S thirdparty/whisper.cpp -B thirdparty/whisper.cpp/build
//	cmake --build thirdparty/whisper.cpp/build
//	go generate ./pkg/speech/speechtotext/whisper/pkgconfig
//	export PKG_CONFIG_PATH="$PWD/pkg/speech/speechtotext/whisper/pkgconfig"
//
// Builds without cgo, or with the no_whisper tag, skip the engine and do not
// need any of this.
package pkgconfig

//go:generate go run github.com/mutablelogic/go-whisper/sys/pkg-config --version "0.0.0" --prefix "$DOLLAR{pcfiledir}/../../../../../thirdparty/whisper.cpp/" --cflags "-I$DOLLAR{prefix}/include -I$DOLLAR{prefix}/ggml/include" libwhisper.pc
//go:generate go run github.com/mutablelogic/go-whisper/sys/pkg-config --version "0.0.0" --prefix "$DOLLAR{pcfiledir}/../../../../../thirdparty/whisper.cpp/" --cflags "-fopenmp" --libs "-L$DOLLAR{prefix}/build/ggml/src -L$DOLLAR{prefix}/build/src -lwhisper -lggml -lggml-base -lggml-cpu -lgomp -lm -lstdc++" libwhisper-linux.pc
//go:generate go run github.com/mutablelogic/go-whisper/sys/pkg-config --version "0.0.0" --prefix "$DOLLAR{pcfiledir}/../../../../../thirdparty/whisper.cpp/" --libs "-L$DOLLAR{prefix}/build/ggml/src -L$DOLLAR{prefix}/build/ggml/src/ggml-blas -L$DOLLAR{prefix}/build/ggml/src/ggml-metal -L$DOLLAR{prefix}/build/src -lwhisper -lggml -lggml-base -lggml-cpu -lggml-blas -lggml-metal -lm -lstdc++ -framework Accelerate -framework Metal -framework Foundation -framework CoreGraphics" libwhisper-darwin.pc
//go:generate go run github.com/mutablelogic/go-whisper/sys/pkg-config --version "0.0.0" --prefix "$DOLLAR{pcfiledir}/../../../../../thirdparty/whisper.cpp/" --libs "-L$DOLLAR{prefix}/build/ggml/src/ggml-cuda -lggml-cuda" libwhisper-cuda.pc
